//go:build windows

package raspberry

import "fmt"

// openLine is not supported, use DriverEmulated on windows.
func openLine(o Options) (Switch, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, DriverGpiod)
}

// openMem is not supported, use DriverEmulated on windows.
func openMem(o Options) (Switch, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, DriverGpiomem)
}
