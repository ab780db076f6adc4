package action

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/model"
	"golang.org/x/sys/unix"
)

const defaultPlatformProfile = "/sys/firmware/acpi/platform_profile"

// PowerControl requests an OS power profile transition.
type PowerControl interface {
	SetProfile(ctx context.Context, p model.PowerProfile) error
}

// DefaultPowerControl tries power-profiles-daemon first, then the ACPI platform profile.
func DefaultPowerControl(tool string) PowerControl {
	if tool == "" {
		tool = "powerprofilesctl"
	}
	return Chain{
		&ProfilesCtl{Tool: tool},
		&PlatformProfile{Path: defaultPlatformProfile},
	}
}

// Chain asks each control in turn, moving on only while they report Unsupported.
type Chain []PowerControl

func (c Chain) SetProfile(ctx context.Context, p model.PowerProfile) error {
	for _, ctl := range c {
		err := ctl.SetProfile(ctx, p)
		if !errors.HasCode(err, errors.ErrUnsupported) {
			return err
		}
	}
	return errors.New().WithMessage(errors.ErrUnsupported, "no power-profile mechanism on this host")
}

// ProfilesCtl drives power-profiles-daemon through its CLI.
type ProfilesCtl struct {
	Tool string
	run  func(ctx context.Context, name string, args ...string) (string, error)
}

func (c *ProfilesCtl) SetProfile(ctx context.Context, p model.PowerProfile) error {
	errFactory := errors.New()

	path, err := exec.LookPath(c.Tool)
	if err != nil {
		return errFactory.Wrap(errors.ErrUnsupported, err)
	}
	run := c.run
	if run == nil {
		run = runCmd
	}

	out, err := run(ctx, path, "set", string(p))
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return errFactory.Wrap(errors.ErrTimeout, ctx.Err())
	}
	return classifyToolOutput(c.Tool, out, err)
}

func classifyToolOutput(tool, out string, err error) error {
	errFactory := errors.New()

	msg := strings.TrimSpace(out)
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "accessdenied"),
		strings.Contains(lower, "not authorized"),
		strings.Contains(lower, "notauthorized"),
		strings.Contains(lower, "permission denied"):
		return errFactory.Wrap(errors.ErrPermissionDenied, err).WithData(msg)
	case strings.Contains(lower, "serviceunknown"),
		strings.Contains(lower, "was not provided by any"),
		strings.Contains(lower, "no such interface"):
		return errFactory.Wrap(errors.ErrUnsupported, err).WithData(tool + ": daemon not running")
	}
	if msg == "" {
		return errFactory.Wrap(errors.ErrExternalTool, err)
	}
	return errFactory.Wrap(errors.ErrExternalTool, err).WithData(msg)
}

func runCmd(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// PlatformProfile writes the ACPI platform_profile sysfs attribute.
type PlatformProfile struct {
	Path string
}

// platformNames maps a profile to the kernel's choice names, in preference order.
var platformNames = map[model.PowerProfile][]string{
	model.ProfilePerformance: {"performance"},
	model.ProfileBalanced:    {"balanced", "balanced-performance"},
	model.ProfilePowerSaver:  {"low-power", "quiet", "cool"},
}

func (pp *PlatformProfile) SetProfile(_ context.Context, p model.PowerProfile) error {
	errFactory := errors.New()

	if _, err := os.Stat(pp.Path); err != nil {
		return errFactory.Wrap(errors.ErrUnsupported, err)
	}

	choices := strings.Fields(readFile(filepath.Join(filepath.Dir(pp.Path), "platform_profile_choices")))
	name := ""
	for _, want := range platformNames[p] {
		if len(choices) == 0 || slices.Contains(choices, want) {
			name = want
			break
		}
	}
	if name == "" {
		return errFactory.WithData(errors.ErrUnsupported, struct {
			Profile model.PowerProfile
			Choices []string
		}{p, choices})
	}

	if err := os.WriteFile(pp.Path, []byte(name), 0o644); err != nil {
		return classifyWrite(err)
	}
	return nil
}

// classifyWrite maps a failed privileged file write onto the error taxonomy.
func classifyWrite(err error) error {
	errFactory := errors.New()

	switch {
	case os.IsNotExist(err):
		return errFactory.Wrap(errors.ErrUnsupported, err)
	case os.IsPermission(err), errors.Is(err, unix.EPERM), errors.Is(err, unix.EROFS):
		return errFactory.Wrap(errors.ErrPermissionDenied, err)
	default:
		return errFactory.Wrap(errors.ErrExternalTool, err)
	}
}

func readFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
