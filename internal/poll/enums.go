package poll

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The ledger encodes these as small integers. Parsing never falls back to a
// default label: an unknown value is an error.

type DistributionMode uint8

const (
	ManualPull DistributionMode = iota
	ManualPush
	Automated
)

var distributionModeNames = [...]string{"MANUAL_PULL", "MANUAL_PUSH", "AUTOMATED"}

func (m DistributionMode) String() string {
	if int(m) < len(distributionModeNames) {
		return distributionModeNames[m]
	}
	return fmt.Sprintf("DistributionMode(%d)", uint8(m))
}

func (m DistributionMode) Valid() bool { return int(m) < len(distributionModeNames) }

func ParseDistributionMode(s string) (DistributionMode, error) {
	v, err := parseLabel(s, distributionModeNames[:], "distribution mode")
	return DistributionMode(v), err
}

func DistributionModeFromUint(v uint64) (DistributionMode, error) {
	if v >= uint64(len(distributionModeNames)) {
		return 0, fmt.Errorf("unknown distribution mode %d", v)
	}
	return DistributionMode(v), nil
}

func (m DistributionMode) MarshalJSON() ([]byte, error) { return marshalLabel(m.Valid(), m.String()) }

func (m *DistributionMode) UnmarshalJSON(b []byte) error {
	return unmarshalLabel(b, func(s string) error {
		v, err := ParseDistributionMode(s)
		*m = v
		return err
	})
}

type FundingType uint8

const (
	FundingNone FundingType = iota
	FundingSelf
	FundingCommunity
)

var fundingTypeNames = [...]string{"NONE", "SELF", "COMMUNITY"}

func (f FundingType) String() string {
	if int(f) < len(fundingTypeNames) {
		return fundingTypeNames[f]
	}
	return fmt.Sprintf("FundingType(%d)", uint8(f))
}

func (f FundingType) Valid() bool { return int(f) < len(fundingTypeNames) }

func ParseFundingType(s string) (FundingType, error) {
	v, err := parseLabel(s, fundingTypeNames[:], "funding type")
	return FundingType(v), err
}

func FundingTypeFromUint(v uint64) (FundingType, error) {
	if v >= uint64(len(fundingTypeNames)) {
		return 0, fmt.Errorf("unknown funding type %d", v)
	}
	return FundingType(v), nil
}

func (f FundingType) MarshalJSON() ([]byte, error) { return marshalLabel(f.Valid(), f.String()) }

func (f *FundingType) UnmarshalJSON(b []byte) error {
	return unmarshalLabel(b, func(s string) error {
		v, err := ParseFundingType(s)
		*f = v
		return err
	})
}

type Status uint8

const (
	StatusActive Status = iota
	StatusClosed
	StatusForClaiming
	StatusPaused
)

var statusNames = [...]string{"ACTIVE", "CLOSED", "FOR_CLAIMING", "PAUSED"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) Valid() bool { return int(s) < len(statusNames) }

func ParseStatus(s string) (Status, error) {
	v, err := parseLabel(s, statusNames[:], "status")
	return Status(v), err
}

func StatusFromUint(v uint64) (Status, error) {
	if v >= uint64(len(statusNames)) {
		return 0, fmt.Errorf("unknown status %d", v)
	}
	return Status(v), nil
}

func (s Status) MarshalJSON() ([]byte, error) { return marshalLabel(s.Valid(), s.String()) }

func (s *Status) UnmarshalJSON(b []byte) error {
	return unmarshalLabel(b, func(str string) error {
		v, err := ParseStatus(str)
		*s = v
		return err
	})
}

type VotingType uint8

const (
	VotingLinear VotingType = iota
	VotingQuadratic
)

var votingTypeNames = [...]string{"LINEAR", "QUADRATIC"}

func (v VotingType) String() string {
	if int(v) < len(votingTypeNames) {
		return votingTypeNames[v]
	}
	return fmt.Sprintf("VotingType(%d)", uint8(v))
}

func (v VotingType) Valid() bool { return int(v) < len(votingTypeNames) }

func ParseVotingType(s string) (VotingType, error) {
	v, err := parseLabel(s, votingTypeNames[:], "voting type")
	return VotingType(v), err
}

func VotingTypeFromUint(v uint64) (VotingType, error) {
	if v >= uint64(len(votingTypeNames)) {
		return 0, fmt.Errorf("unknown voting type %d", v)
	}
	return VotingType(v), nil
}

func (v VotingType) MarshalJSON() ([]byte, error) { return marshalLabel(v.Valid(), v.String()) }

func (v *VotingType) UnmarshalJSON(b []byte) error {
	return unmarshalLabel(b, func(s string) error {
		parsed, err := ParseVotingType(s)
		*v = parsed
		return err
	})
}

func parseLabel(s string, names []string, what string) (uint8, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	for i, n := range names {
		if n == key {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}

func marshalLabel(valid bool, label string) ([]byte, error) {
	if !valid {
		return nil, fmt.Errorf("cannot marshal %s", label)
	}
	return json.Marshal(label)
}

func unmarshalLabel(b []byte, set func(string) error) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return set(s)
}
