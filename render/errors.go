package render

import (
	"errors"
	"fmt"
)

// DeviceResourceError is returned when the device cannot allocate a render
// target with the requested parameters.
type DeviceResourceError struct {
	Width, Height int
	Samples       int
	Reason        string
}

func (e *DeviceResourceError) Error() string {
	return fmt.Sprintf("render target %dx%d with %d samples: %s", e.Width, e.Height, e.Samples, e.Reason)
}

var errReleased = errors.New("render target released")
