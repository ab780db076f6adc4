package model

import (
	"strings"
	"time"

	"github.com/lonitor/lonitor/internal/errors"
)

// PowerProfile is a requested OS power mode. The current profile is owned by the OS.
type PowerProfile string

const (
	ProfilePerformance PowerProfile = "performance"
	ProfileBalanced    PowerProfile = "balanced"
	ProfilePowerSaver  PowerProfile = "power-saver"
)

var PowerProfiles = []PowerProfile{ProfilePerformance, ProfileBalanced, ProfilePowerSaver}

func ParsePowerProfile(s string) (PowerProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "performance":
		return ProfilePerformance, nil
	case "balanced":
		return ProfileBalanced, nil
	case "power-saver", "power_saver", "powersaver":
		return ProfilePowerSaver, nil
	}
	return "", errors.New().WithData(errors.ErrInvalidArgument, s)
}

type ActionKind string

const (
	ActionSetPowerProfile   ActionKind = "set_power_profile"
	ActionClearRAMCache     ActionKind = "clear_ram_cache"
	ActionClearStorageCache ActionKind = "clear_storage_cache"
	ActionKillProcess       ActionKind = "kill_process"
)

type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusFailure OutcomeStatus = "failure"
)

// Outcome classifies how an action ended. Code is empty on success.
type Outcome struct {
	Status OutcomeStatus    `json:"status"`
	Code   errors.ErrorCode `json:"code,omitempty"`
}

// OutcomeOf derives the outcome from an action's returned error.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Outcome{Status: StatusSuccess}
	}
	return Outcome{Status: StatusFailure, Code: errors.CodeOf(err)}
}

func (o Outcome) Success() bool { return o.Status == StatusSuccess }

// Unauthorized reports a failure caused by missing privilege.
func (o Outcome) Unauthorized() bool { return o.Code == errors.ErrPermissionDenied }

func (o Outcome) String() string {
	if o.Success() {
		return string(StatusSuccess)
	}
	return string(StatusFailure) + "(" + string(o.Code) + ")"
}

// ActionRecord is one Action Log entry. It is never modified after append.
type ActionRecord struct {
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
	Timestamp  time.Time         `json:"timestamp"`
	Duration   time.Duration     `json:"duration"`
	Kind       ActionKind        `json:"kind"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Outcome    Outcome           `json:"outcome"`
	Detail     string            `json:"detail"`
}
