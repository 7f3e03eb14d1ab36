//go:build !vulkan

package vulkan

import (
	"errors"

	"github.com/dariost/wyvern/executor"
)

// NewExecutor requires the vulkan build tag; this stub keeps the package
// buildable on hosts without the Vulkan SDK.
func NewExecutor(_ Config) (executor.Executor, error) {
	return nil, errors.New("wyvern was built without Vulkan support (rebuild with -tags vulkan)")
}
