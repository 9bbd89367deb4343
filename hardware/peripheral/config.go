package peripheral

import (
	"io"
	"strconv"
	"time"

	"github.com/aykevl/domo-rpi/helpers"
	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

const DefaultSpiSpeed = 100 * physic.KiloHertz

type Config struct {
	SpiBus    string
	SpiMode   int
	SpiSpeed  string
	ResetChip string // empty = no reset line
	ResetPin  string

	testhw *hardware
}

type hardware struct {
	spiTx    SpiTxFunc // used
	sleep    func(time.Duration)
	gpioChip gpio.Chiper // nil without reset line
	resetPin uint32

	spiPort spi.PortCloser // only for resource cleanup
}
type SpiTxFunc func(send, recv []byte) error

const consumerLabel = "domo-rpi"

// Converts strings to useful hardware talking functions.
func (h *hardware) open(c *Config) error {
	var err error
	var resetPin uint64
	if c.ResetChip != "" {
		resetPin, err = strconv.ParseUint(c.ResetPin, 10, 16)
		if err != nil {
			return errors.Annotate(err, "reset pin must be line number")
		}
	}

	if c.testhw != nil {
		*h = *c.testhw
		if h.sleep == nil {
			h.sleep = func(time.Duration) {}
		}
		return nil
	}
	h.sleep = time.Sleep

	if _, err = host.Init(); err != nil {
		return errors.Annotate(err, "periph/init")
	}

	h.spiPort, err = spireg.Open(c.SpiBus)
	if err != nil {
		return errors.Annotatef(err, "SPI Open bus=%s", c.SpiBus)
	}
	spiSpeed := DefaultSpiSpeed
	if c.SpiSpeed != "" {
		if err = spiSpeed.Set(c.SpiSpeed); err != nil {
			return errors.Annotate(err, "SPI speed parse")
		}
	}
	var spiConn spi.Conn
	spiConn, err = h.spiPort.Connect(spiSpeed, spi.Mode(c.SpiMode), 8)
	if err != nil {
		return errors.Annotate(err, "SPI Connect")
	}
	h.spiTx = spiConn.Tx

	if c.ResetChip != "" {
		h.gpioChip, err = gpio.Open(c.ResetChip, consumerLabel)
		if err != nil {
			return errors.Annotatef(err, "reset pin open chip=%s", c.ResetChip)
		}
		h.resetPin = uint32(resetPin)
	}
	return nil
}

func (h *hardware) Close() error {
	closers := make([]io.Closer, 0, 2)
	if h.spiPort != nil {
		closers = append(closers, h.spiPort)
	}
	if h.gpioChip != nil {
		closers = append(closers, h.gpioChip)
	}
	errs := make([]error, len(closers))
	for i, c := range closers {
		errs[i] = c.Close()
	}
	return helpers.FoldErrors(errs)
}
