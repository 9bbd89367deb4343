package relay

import (
	"github.com/aykevl/domo-rpi/log2"
	"github.com/juju/errors"
	"github.com/temoto/spq"
)

// outbox is unbounded FIFO of serialized messages.
// Producers Push without waiting for network. Single pump goroutine hands
// messages one by one to whichever send task currently receives from C().
type outbox struct {
	log    *log2.Log
	q      *spq.Queue
	ch     chan []byte
	stopch chan struct{}
	donech chan struct{}
}

func openOutbox(path string, log *log2.Log) (*outbox, error) {
	if path == "" {
		path = spq.OnlyForTesting
	}
	q, err := spq.Open(path)
	if err != nil {
		return nil, errors.Annotate(err, "relay outbox")
	}
	self := &outbox{
		log:    log,
		q:      q,
		ch:     make(chan []byte),
		stopch: make(chan struct{}),
		donech: make(chan struct{}),
	}
	go self.pump()
	return self, nil
}

func (self *outbox) Push(b []byte) error {
	return errors.Annotate(self.q.Push(b), "relay outbox push")
}

func (self *outbox) C() <-chan []byte { return self.ch }

func (self *outbox) Close() error {
	select {
	case <-self.stopch:
		return nil
	default:
	}
	close(self.stopch)
	err := self.q.Close()
	<-self.donech
	return err
}

func (self *outbox) pump() {
	defer close(self.donech)
	for {
		box, err := self.q.Peek()
		switch err {
		case nil: // success path
			select {
			case self.ch <- box.Bytes():
			case <-self.stopch:
				return
			}
			if err = self.q.Delete(box); err != nil {
				if err == spq.ErrClosed {
					return
				}
				self.log.Errorf("relay outbox Delete b=%s err=%v", box.Bytes(), err)
			}

		case spq.ErrClosed:
			select {
			case <-self.stopch: // success path
			default:
				self.log.Errorf("CRITICAL relay outbox closed unexpectedly")
			}
			return

		default:
			self.log.Errorf("CRITICAL relay outbox err=%v", err)
			select {
			case <-self.stopch:
				return
			default:
			}
		}
	}
}
