package peripheral

import (
	"strings"
	"sync"
	"testing"

	"github.com/aykevl/domo-rpi/helpers"
	"github.com/aykevl/domo-rpi/log2"
	"github.com/stretchr/testify/assert"
	gpio_mock "github.com/temoto/gpio-cdev-go/mock"
)

// Helpers for testing peripheral package

type tenv struct {
	t        testing.TB
	log      *log2.Log
	config   Config
	spiMock  *spiMock
	chipMock *gpio_mock.MockChip
}

func testEnv(t *testing.T, withReset bool) *tenv {
	env := &tenv{
		t:       t,
		log:     log2.NewTest(t, log2.LDebug),
		spiMock: newSpiMock(t),
	}
	env.config = Config{SpiBus: "test"}
	hw := &hardware{spiTx: env.spiMock.Tx}
	if withReset {
		env.chipMock = &gpio_mock.MockChip{}
		env.chipMock.On("Close").Return(nil)
		env.config.ResetChip = "test"
		env.config.ResetPin = "25"
		hw.gpioChip = env.chipMock
		hw.resetPin = 25
	}
	env.config.testhw = hw
	return env
}

func (env *tenv) client() *Client {
	c, err := NewClient(&env.config, env.log)
	if err != nil {
		env.t.Fatal(err)
	}
	return c
}

type spiTxCall struct {
	s []byte
	r []byte
	e error
}
type spiMock struct {
	assert  *assert.Assertions
	t       testing.TB
	mu      sync.Mutex
	expects []spiTxCall
	index   int
}

func newSpiMock(t testing.TB) *spiMock {
	return &spiMock{
		expects: make([]spiTxCall, 0, 64),
		t:       t,
		assert:  assert.New(t),
	}
}

func (m *spiMock) Tx(send, recv []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index >= len(m.expects) {
		msg := "premature end of spiMock.expects"
		m.t.Error(msg)
		panic(msg)
	}
	call := m.expects[m.index]
	m.assert.Equal(call.s, send, "spi call=%d", m.index)
	copy(recv, call.r)
	m.index++
	return call.e
}

func (m *spiMock) PushOk(sendHex, recvHex string) {
	m.push(spiTxCall{s: helpers.MustHex(sendHex), r: helpers.MustHex(recvHex)})
}

func (m *spiMock) PushError(sendHex string, err error) {
	m.push(spiTxCall{s: helpers.MustHex(sendHex), r: []byte{0}, e: err})
}

// PushRead expects getter command byte, then reads each byte of responseHex.
func (m *spiMock) PushRead(cmdHex, responseHex string) {
	m.PushOk(cmdHex, "00")
	for _, b := range helpers.MustHex(strings.Replace(responseHex, " ", "", -1)) {
		m.push(spiTxCall{s: []byte{0}, r: []byte{b}})
	}
}

// PushWrite expects every byte of frameHex sent separately.
func (m *spiMock) PushWrite(frameHex string) {
	for _, b := range helpers.MustHex(strings.Replace(frameHex, " ", "", -1)) {
		m.push(spiTxCall{s: []byte{b}, r: []byte{0}})
	}
}

func (m *spiMock) push(c spiTxCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expects = append(m.expects, c)
}

func (m *spiMock) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index == len(m.expects)
}

func (m *spiMock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}
