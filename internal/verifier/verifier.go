// Package verifier implements the kill and heartbeat proximity checks
// (spec §4.3, §4.4) as pure functions over a small input struct, the same
// shape as the teacher's internal/heuristics detectors: no side effects,
// an ordered list of checks, first failure wins.
package verifier

import (
	"time"

	"github.com/chain-assassin/coordinator/internal/ble"
	"github.com/chain-assassin/coordinator/internal/geo"
	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/qrcode"
)

// ErrorKind enumerates the verification error taxonomy (spec §7).
type ErrorKind string

const (
	ErrInvalidQR                 ErrorKind = "invalidQr"
	ErrWrongGame                  ErrorKind = "wrongGame"
	ErrUnknownPlayer              ErrorKind = "unknownPlayer"
	ErrNotRegistered              ErrorKind = "notRegistered"
	ErrHunterEliminated           ErrorKind = "hunterEliminated"
	ErrTargetAlreadyEliminated    ErrorKind = "targetAlreadyEliminated"
	ErrNotYourTarget              ErrorKind = "notYourTarget"
	ErrTargetLocationUnavailable  ErrorKind = "targetLocationUnavailable"
	ErrTooFar                     ErrorKind = "tooFar"
	ErrTargetBluetoothMissing     ErrorKind = "targetBluetoothMissing"
	ErrNotSeenOverBluetooth       ErrorKind = "notSeenOverBluetooth"

	ErrScanYourself     ErrorKind = "scanYourself"
	ErrScanYourTarget   ErrorKind = "scanYourTarget"
	ErrScanYourHunter   ErrorKind = "scanYourHunter"
	ErrHeartbeatDisabled ErrorKind = "heartbeatDisabled"
	ErrGameNotActive     ErrorKind = "gameNotActive"

	ErrCheckinClosed        ErrorKind = "checkinClosed"
	ErrTooFarFromMeeting    ErrorKind = "tooFarFromMeetingPoint"
	ErrAlreadyCheckedIn     ErrorKind = "alreadyCheckedIn"
	ErrScannedNotCheckedIn  ErrorKind = "scannedNotCheckedIn"
)

// KillVerdict is the result of VerifyKill.
type KillVerdict struct {
	Valid          bool
	ErrorKind      ErrorKind
	TargetAddress  string
	DistanceMeters float64
	TargetLat      float64
	TargetLng      float64
}

func invalidKill(kind ErrorKind) KillVerdict { return KillVerdict{Valid: false, ErrorKind: kind} }

// KillInput bundles everything VerifyKill needs to resolve a claimed kill
// without touching the store itself.
type KillInput struct {
	GameID          int64
	HunterAddress   string
	QRPayload       string
	HunterLat       float64
	HunterLng       float64
	BLENearbyTokens []string

	// Resolved by the caller (coordinator) from the store, so this package
	// stays a pure function over already-fetched data.
	LookupPlayerByNumber func(playerNumber int64) (addr string, ok bool)
	Hunter               *models.Player
	TargetAddrFromQR      string
	Target                *models.Player
	HunterCurrentTarget    string
	TargetLatestPing       *models.LocationPing
	KillProximityMeters    float64
	StrictLocationProof    bool
	BLERequired            bool
}

// VerifyKill runs the spec §4.3 ordered checks.
func VerifyKill(in KillInput) KillVerdict {
	payload, err := qrcode.Decode(in.QRPayload)
	if err != nil {
		return invalidKill(ErrInvalidQR)
	}
	if payload.GameID != in.GameID {
		return invalidKill(ErrWrongGame)
	}

	targetAddr, ok := in.LookupPlayerByNumber(payload.PlayerNumber)
	if !ok {
		return invalidKill(ErrUnknownPlayer)
	}

	if in.Hunter == nil {
		return invalidKill(ErrNotRegistered)
	}
	if !in.Hunter.IsAlive {
		return invalidKill(ErrHunterEliminated)
	}

	if in.Target == nil || !in.Target.IsAlive {
		return invalidKill(ErrTargetAlreadyEliminated)
	}

	if in.HunterCurrentTarget != targetAddr {
		return invalidKill(ErrNotYourTarget)
	}

	if in.TargetLatestPing == nil {
		if in.StrictLocationProof {
			return invalidKill(ErrTargetLocationUnavailable)
		}
	} else {
		dist := geo.HaversineMeters(
			geo.Point{Lat: in.HunterLat, Lng: in.HunterLng},
			geo.Point{Lat: in.TargetLatestPing.Lat, Lng: in.TargetLatestPing.Lng},
		)
		if dist > in.KillProximityMeters {
			return KillVerdict{Valid: false, ErrorKind: ErrTooFar, DistanceMeters: dist}
		}
	}

	if in.BLERequired {
		token := ble.Canonicalize(in.Target.BluetoothToken)
		if token == "" {
			return invalidKill(ErrTargetBluetoothMissing)
		}
		if !ble.Contains(in.BLENearbyTokens, token) {
			return invalidKill(ErrNotSeenOverBluetooth)
		}
	}

	verdict := KillVerdict{Valid: true, TargetAddress: targetAddr}
	if in.TargetLatestPing != nil {
		verdict.TargetLat = in.TargetLatestPing.Lat
		verdict.TargetLng = in.TargetLatestPing.Lng
		verdict.DistanceMeters = geo.HaversineMeters(
			geo.Point{Lat: in.HunterLat, Lng: in.HunterLng},
			geo.Point{Lat: in.TargetLatestPing.Lat, Lng: in.TargetLatestPing.Lng},
		)
	}
	return verdict
}

// HeartbeatVerdict is the result of VerifyHeartbeat.
type HeartbeatVerdict struct {
	Valid         bool
	ErrorKind     ErrorKind
	ScannedAddress string
}

func invalidHeartbeat(kind ErrorKind) HeartbeatVerdict {
	return HeartbeatVerdict{Valid: false, ErrorKind: kind}
}

// HeartbeatInput bundles everything VerifyHeartbeat needs.
type HeartbeatInput struct {
	GameID          int64
	ScannerAddress  string
	QRPayload       string
	Lat             float64
	Lng             float64
	BLENearbyTokens []string

	SubPhase              models.SubPhase
	AliveCount             int
	HeartbeatDisableThreshold int

	LookupPlayerByNumber func(playerNumber int64) (addr string, ok bool)
	Scanner               *models.Player
	Scanned                *models.Player
	ScannedAddress          string
	ScannerCurrentTarget     string // scanner's hunter->target
	ScannerCurrentHunter     string // who hunts scanner
	LatestPing               *models.LocationPing // scanned's latest ping, for proximity
	HeartbeatProximityMeters float64
	BLERequired              bool
}

// VerifyHeartbeat runs the spec §4.4 checks.
func VerifyHeartbeat(in HeartbeatInput) HeartbeatVerdict {
	if in.SubPhase != models.SubPhaseGame {
		return invalidHeartbeat(ErrGameNotActive)
	}
	if in.Scanner == nil || !in.Scanner.IsAlive {
		return invalidHeartbeat(ErrHunterEliminated)
	}
	if in.AliveCount <= in.HeartbeatDisableThreshold {
		return invalidHeartbeat(ErrHeartbeatDisabled)
	}

	payload, err := qrcode.Decode(in.QRPayload)
	if err != nil {
		return invalidHeartbeat(ErrInvalidQR)
	}
	if payload.GameID != in.GameID {
		return invalidHeartbeat(ErrWrongGame)
	}

	scannedAddr, ok := in.LookupPlayerByNumber(payload.PlayerNumber)
	if !ok {
		return invalidHeartbeat(ErrUnknownPlayer)
	}
	if in.Scanned == nil || !in.Scanned.IsAlive {
		return invalidHeartbeat(ErrTargetAlreadyEliminated)
	}
	if scannedAddr == in.ScannerAddress {
		return invalidHeartbeat(ErrScanYourself)
	}
	if in.ScannerCurrentTarget == scannedAddr {
		return invalidHeartbeat(ErrScanYourTarget)
	}
	if in.ScannerCurrentHunter == scannedAddr {
		return invalidHeartbeat(ErrScanYourHunter)
	}

	if in.LatestPing == nil {
		return invalidHeartbeat(ErrTargetLocationUnavailable)
	}
	dist := geo.HaversineMeters(
		geo.Point{Lat: in.Lat, Lng: in.Lng},
		geo.Point{Lat: in.LatestPing.Lat, Lng: in.LatestPing.Lng},
	)
	if dist > in.HeartbeatProximityMeters {
		return invalidHeartbeat(ErrTooFar)
	}

	if in.BLERequired {
		token := ble.Canonicalize(in.Scanned.BluetoothToken)
		if token == "" {
			return invalidHeartbeat(ErrTargetBluetoothMissing)
		}
		if !ble.Contains(in.BLENearbyTokens, token) {
			return invalidHeartbeat(ErrNotSeenOverBluetooth)
		}
	}

	return HeartbeatVerdict{Valid: true, ScannedAddress: scannedAddr}
}

// CheckinVerdict is the result of VerifyCheckin.
type CheckinVerdict struct {
	Valid     bool
	ErrorKind ErrorKind
	// AttachTokenOnly is true when the submitter was already checked in
	// (via auto-seed) and this call is purely attaching a Bluetooth token.
	AttachTokenOnly bool
}

func invalidCheckin(kind ErrorKind) CheckinVerdict { return CheckinVerdict{Valid: false, ErrorKind: kind} }

// CheckinInput bundles everything VerifyCheckin needs to resolve a
// client-driven check-in submission (spec §4.6 "Client-driven check-in").
type CheckinInput struct {
	GameID       int64
	SubPhase     models.SubPhase
	ChainTimeNow time.Time
	ExpiryDeadline time.Time

	Submitter         *models.Player
	SubmitterDistance float64 // meters from meeting point
	MeetingRadiusMeters float64

	QRPayload       string
	BluetoothToken  string
	BLENearbyTokens []string
	BLERequired     bool

	LookupPlayerByNumber func(playerNumber int64) (addr string, ok bool)
	ScannedPlayer        *models.Player // resolved from QR, nil if QR omitted/invalid
}

// VerifyCheckin runs the spec §4.6 client-driven check-in checks.
func VerifyCheckin(in CheckinInput) CheckinVerdict {
	if in.SubPhase != models.SubPhaseCheckin || in.ChainTimeNow.After(in.ExpiryDeadline) {
		return invalidCheckin(ErrCheckinClosed)
	}
	if in.Submitter == nil {
		return invalidCheckin(ErrNotRegistered)
	}
	if in.SubmitterDistance > in.MeetingRadiusMeters {
		return invalidCheckin(ErrTooFarFromMeeting)
	}

	if in.Submitter.CheckedIn {
		if in.Submitter.BluetoothToken != "" {
			return invalidCheckin(ErrAlreadyCheckedIn)
		}
		return CheckinVerdict{Valid: true, AttachTokenOnly: true}
	}

	payload, err := qrcode.Decode(in.QRPayload)
	if err != nil {
		return invalidCheckin(ErrInvalidQR)
	}
	if payload.GameID != in.GameID {
		return invalidCheckin(ErrWrongGame)
	}
	scannedAddr, ok := in.LookupPlayerByNumber(payload.PlayerNumber)
	if !ok {
		return invalidCheckin(ErrUnknownPlayer)
	}
	if scannedAddr == in.Submitter.WalletAddress {
		return invalidCheckin(ErrScanYourself)
	}
	if in.ScannedPlayer == nil || !in.ScannedPlayer.CheckedIn {
		return invalidCheckin(ErrScannedNotCheckedIn)
	}

	if in.BLERequired {
		token := ble.Canonicalize(in.ScannedPlayer.BluetoothToken)
		if token == "" {
			return invalidCheckin(ErrTargetBluetoothMissing)
		}
		if !ble.Contains(in.BLENearbyTokens, token) {
			return invalidCheckin(ErrNotSeenOverBluetooth)
		}
	}

	return CheckinVerdict{Valid: true}
}
