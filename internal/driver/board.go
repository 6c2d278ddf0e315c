package driver

import (
	"fmt"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/elata-labs/eegpipe/internal/logging"
)

// OpenSPIBoard brings up periph.io's host drivers and opens the named SPI
// bus and DRDY GPIO pin, then wraps them in a SPIBoardDriver. busName and
// drdyPinName are periph.io registry names (e.g. "/dev/spidev0.0", "GPIO17")
// resolved via spireg.Open/gpioreg.ByName; host.Init() registers every
// built-in platform driver those lookups depend on.
//
// This is the only call site in the runtime that talks to real hardware
// registries directly; everything else goes through the Driver interface.
func OpenSPIBoard(busName, drdyPinName string, chip Chip, log *logging.Logger) (*SPIBoardDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	port, err := spireg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open spi bus %q: %w", busName, err)
	}

	drdy := gpioreg.ByName(drdyPinName)
	if drdy == nil {
		_ = port.Close()
		return nil, fmt.Errorf("gpio pin %q not found in periph registry", drdyPinName)
	}

	return NewSPIBoardDriver(port, drdy, chip, log), nil
}
