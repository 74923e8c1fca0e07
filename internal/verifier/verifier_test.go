package verifier

import (
	"testing"
	"time"

	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/qrcode"
)

func lookupFrom(players map[int64]string) func(int64) (string, bool) {
	return func(n int64) (string, bool) {
		addr, ok := players[n]
		return addr, ok
	}
}

func baseKillInput() KillInput {
	qr := qrcode.Encode(1, 2)
	return KillInput{
		GameID:               1,
		HunterAddress:        "hunter",
		QRPayload:             qr,
		HunterLat:             0,
		HunterLng:             0,
		LookupPlayerByNumber: lookupFrom(map[int64]string{2: "target"}),
		Hunter:                &models.Player{IsAlive: true},
		Target:                &models.Player{IsAlive: true, BluetoothToken: "AA:BB:CC"},
		HunterCurrentTarget:   "target",
		TargetLatestPing:      &models.LocationPing{Lat: 0, Lng: 0},
		KillProximityMeters:   500,
		BLERequired:           true,
		BLENearbyTokens:       []string{"aabbcc"},
	}
}

func TestVerifyKillSuccess(t *testing.T) {
	v := VerifyKill(baseKillInput())
	if !v.Valid {
		t.Fatalf("verdict = %+v, want valid", v)
	}
	if v.TargetAddress != "target" {
		t.Fatalf("TargetAddress = %q, want target", v.TargetAddress)
	}
}

func TestVerifyKillInvalidQR(t *testing.T) {
	in := baseKillInput()
	in.QRPayload = "garbage"
	v := VerifyKill(in)
	if v.Valid || v.ErrorKind != ErrInvalidQR {
		t.Fatalf("verdict = %+v, want invalidQr", v)
	}
}

func TestVerifyKillWrongGame(t *testing.T) {
	in := baseKillInput()
	in.QRPayload = qrcode.Encode(2, 2)
	v := VerifyKill(in)
	if v.Valid || v.ErrorKind != ErrWrongGame {
		t.Fatalf("verdict = %+v, want wrongGame", v)
	}
}

func TestVerifyKillNotYourTarget(t *testing.T) {
	in := baseKillInput()
	in.HunterCurrentTarget = "someone-else"
	v := VerifyKill(in)
	if v.Valid || v.ErrorKind != ErrNotYourTarget {
		t.Fatalf("verdict = %+v, want notYourTarget", v)
	}
}

func TestVerifyKillTooFar(t *testing.T) {
	in := baseKillInput()
	in.TargetLatestPing = &models.LocationPing{Lat: 10, Lng: 10}
	v := VerifyKill(in)
	if v.Valid || v.ErrorKind != ErrTooFar {
		t.Fatalf("verdict = %+v, want tooFar", v)
	}
}

func TestVerifyKillBluetoothMissing(t *testing.T) {
	in := baseKillInput()
	in.Target.BluetoothToken = ""
	v := VerifyKill(in)
	if v.Valid || v.ErrorKind != ErrTargetBluetoothMissing {
		t.Fatalf("verdict = %+v, want targetBluetoothMissing", v)
	}
}

func TestVerifyKillNotSeenOverBluetooth(t *testing.T) {
	in := baseKillInput()
	in.BLENearbyTokens = []string{"zzzzzz"}
	v := VerifyKill(in)
	if v.Valid || v.ErrorKind != ErrNotSeenOverBluetooth {
		t.Fatalf("verdict = %+v, want notSeenOverBluetooth", v)
	}
}

func TestVerifyKillHunterEliminated(t *testing.T) {
	in := baseKillInput()
	in.Hunter.IsAlive = false
	v := VerifyKill(in)
	if v.Valid || v.ErrorKind != ErrHunterEliminated {
		t.Fatalf("verdict = %+v, want hunterEliminated", v)
	}
}

func baseHeartbeatInput() HeartbeatInput {
	qr := qrcode.Encode(1, 3)
	return HeartbeatInput{
		GameID:                    1,
		ScannerAddress:            "p1",
		QRPayload:                 qr,
		Lat:                       0,
		Lng:                       0,
		LookupPlayerByNumber:      lookupFrom(map[int64]string{3: "p3"}),
		SubPhase:                  models.SubPhaseGame,
		AliveCount:                3,
		HeartbeatDisableThreshold: 2,
		Scanner:                   &models.Player{IsAlive: true},
		Scanned:                   &models.Player{IsAlive: true, BluetoothToken: "DD:EE:FF"},
		ScannerCurrentTarget:      "p2",
		ScannerCurrentHunter:      "p2",
		LatestPing:                &models.LocationPing{Lat: 0, Lng: 0},
		HeartbeatProximityMeters:  50,
		BLERequired:               true,
		BLENearbyTokens:           []string{"ddeeff"},
	}
}

func TestVerifyHeartbeatSuccess(t *testing.T) {
	v := VerifyHeartbeat(baseHeartbeatInput())
	if !v.Valid || v.ScannedAddress != "p3" {
		t.Fatalf("verdict = %+v, want valid scanned=p3", v)
	}
}

func TestVerifyHeartbeatDisabledBelowThreshold(t *testing.T) {
	in := baseHeartbeatInput()
	in.AliveCount = 2
	v := VerifyHeartbeat(in)
	if v.Valid || v.ErrorKind != ErrHeartbeatDisabled {
		t.Fatalf("verdict = %+v, want heartbeatDisabled", v)
	}
}

func TestVerifyHeartbeatScanYourself(t *testing.T) {
	in := baseHeartbeatInput()
	in.QRPayload = qrcode.Encode(1, 99) // resolve to scanner's own address
	in.LookupPlayerByNumber = lookupFrom(map[int64]string{99: "p1"})
	v := VerifyHeartbeat(in)
	if v.Valid || v.ErrorKind != ErrScanYourself {
		t.Fatalf("verdict = %+v, want scanYourself", v)
	}
}

func TestVerifyHeartbeatScanYourTarget(t *testing.T) {
	in := baseHeartbeatInput()
	in.QRPayload = qrcode.Encode(1, 2)
	in.LookupPlayerByNumber = lookupFrom(map[int64]string{2: "p2"})
	v := VerifyHeartbeat(in)
	if v.Valid || v.ErrorKind != ErrScanYourTarget {
		t.Fatalf("verdict = %+v, want scanYourTarget", v)
	}
}

func TestVerifyHeartbeatNotInGameSubPhase(t *testing.T) {
	in := baseHeartbeatInput()
	in.SubPhase = models.SubPhasePregame
	v := VerifyHeartbeat(in)
	if v.Valid || v.ErrorKind != ErrGameNotActive {
		t.Fatalf("verdict = %+v, want gameNotActive", v)
	}
}

func baseCheckinInput() CheckinInput {
	deadline := time.Now().Add(time.Hour)
	return CheckinInput{
		GameID:              1,
		SubPhase:            models.SubPhaseCheckin,
		ChainTimeNow:        time.Now(),
		ExpiryDeadline:      deadline,
		Submitter:           &models.Player{WalletAddress: "p1", CheckedIn: false},
		SubmitterDistance:   100,
		MeetingRadiusMeters: 5000,
		QRPayload:           qrcode.Encode(1, 2),
		LookupPlayerByNumber: lookupFrom(map[int64]string{2: "p2"}),
		ScannedPlayer:       &models.Player{WalletAddress: "p2", CheckedIn: true},
	}
}

func TestVerifyCheckinSuccess(t *testing.T) {
	v := VerifyCheckin(baseCheckinInput())
	if !v.Valid || v.AttachTokenOnly {
		t.Fatalf("verdict = %+v, want valid non-attach", v)
	}
}

func TestVerifyCheckinClosedAfterExpiry(t *testing.T) {
	in := baseCheckinInput()
	in.ChainTimeNow = in.ExpiryDeadline.Add(time.Second)
	v := VerifyCheckin(in)
	if v.Valid || v.ErrorKind != ErrCheckinClosed {
		t.Fatalf("verdict = %+v, want checkinClosed", v)
	}
}

func TestVerifyCheckinTooFarFromMeeting(t *testing.T) {
	in := baseCheckinInput()
	in.SubmitterDistance = 6000
	v := VerifyCheckin(in)
	if v.Valid || v.ErrorKind != ErrTooFarFromMeeting {
		t.Fatalf("verdict = %+v, want tooFarFromMeetingPoint", v)
	}
}

func TestVerifyCheckinAlreadyCheckedInWithToken(t *testing.T) {
	in := baseCheckinInput()
	in.Submitter.CheckedIn = true
	in.Submitter.BluetoothToken = "abc"
	v := VerifyCheckin(in)
	if v.Valid || v.ErrorKind != ErrAlreadyCheckedIn {
		t.Fatalf("verdict = %+v, want alreadyCheckedIn", v)
	}
}

func TestVerifyCheckinAutoSeededAttachesTokenOnly(t *testing.T) {
	in := baseCheckinInput()
	in.Submitter.CheckedIn = true
	in.Submitter.BluetoothToken = ""
	v := VerifyCheckin(in)
	if !v.Valid || !v.AttachTokenOnly {
		t.Fatalf("verdict = %+v, want valid attach-only", v)
	}
}

func TestVerifyCheckinScannedNotCheckedIn(t *testing.T) {
	in := baseCheckinInput()
	in.ScannedPlayer.CheckedIn = false
	v := VerifyCheckin(in)
	if v.Valid || v.ErrorKind != ErrScannedNotCheckedIn {
		t.Fatalf("verdict = %+v, want scannedNotCheckedIn", v)
	}
}

func TestVerifyCheckinScanYourself(t *testing.T) {
	in := baseCheckinInput()
	in.LookupPlayerByNumber = lookupFrom(map[int64]string{2: "p1"})
	v := VerifyCheckin(in)
	if v.Valid || v.ErrorKind != ErrScanYourself {
		t.Fatalf("verdict = %+v, want scanYourself", v)
	}
}
