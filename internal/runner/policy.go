package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/conductor/internal/errors"
)

// SandboxPolicy is the allow-list every sandboxed invocation is checked
// against before it starts. Empty lists deny everything except the
// hardened defaults, so granting access is always an explicit act.
type SandboxPolicy struct {
	// AllowedImages are glob patterns for permitted container images
	AllowedImages []string `yaml:"allowed_images"`

	// AllowedNetworks are permitted docker network modes; "none" is always
	// allowed
	AllowedNetworks []string `yaml:"allowed_networks"`

	// AllowedMounts are host path prefixes that may be mounted read-write
	AllowedMounts []string `yaml:"allowed_mounts"`
}

// CheckImage verifies the image against the allow-list.
func (p *SandboxPolicy) CheckImage(image string) error {
	for _, pattern := range p.AllowedImages {
		if ok, _ := filepath.Match(pattern, image); ok {
			return nil
		}
	}
	return errors.NewSandboxPolicyViolationError(
		fmt.Sprintf("image %q is not in the allow-list", image))
}

// CheckNetwork verifies the network mode. The isolated mode "none" needs
// no grant.
func (p *SandboxPolicy) CheckNetwork(network string) error {
	if network == "" || network == "none" {
		return nil
	}
	for _, allowed := range p.AllowedNetworks {
		if allowed == network {
			return nil
		}
	}
	return errors.NewSandboxPolicyViolationError(
		fmt.Sprintf("network mode %q is not in the allow-list", network))
}

// CheckMount verifies a host path may be mounted into the sandbox.
func (p *SandboxPolicy) CheckMount(hostPath string) error {
	abs, err := filepath.Abs(hostPath)
	if err != nil {
		return errors.NewSandboxPolicyViolationError(
			fmt.Sprintf("mount path %q cannot be resolved", hostPath))
	}
	for _, prefix := range p.AllowedMounts {
		if strings.HasPrefix(abs, prefix) {
			return nil
		}
	}
	return errors.NewSandboxPolicyViolationError(
		fmt.Sprintf("mount path %q is outside the allowed prefixes", abs))
}
