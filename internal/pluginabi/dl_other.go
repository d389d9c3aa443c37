//go:build !darwin && !linux && !freebsd

package pluginabi

import (
	"fmt"
	"runtime"

	"github.com/cwbudde/algo-abtest/abtest/processor"
)

func open(bin string) (*Plugin, error) {
	return nil, fmt.Errorf("%w: dynamic plugins are not supported on %s: %s", processor.ErrSourceUnsupported, runtime.GOOS, bin)
}
