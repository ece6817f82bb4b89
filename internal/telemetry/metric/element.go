// Package metric provides Prometheus metrics for Sevault.
package metric

import (
	"context"
	"time"

	"github.com/yndnr/sevault-go/internal/device"
)

// instrumentedElement wraps a secure element so every command is
// recorded with its outcome and latency.
type instrumentedElement struct {
	el  device.SecureElement
	reg *Registry
}

// InstrumentElement wraps el so every command it serves is observed on
// reg. The wrapped element is transparent to callers.
func InstrumentElement(el device.SecureElement, reg *Registry) device.SecureElement {
	return &instrumentedElement{el: el, reg: reg}
}

func (e *instrumentedElement) AeadEncrypt(ctx context.Context, con device.Construction, slot device.Slot, buf []byte) ([]byte, error) {
	start := time.Now()
	tag, err := e.el.AeadEncrypt(ctx, con, slot, buf)
	e.reg.ObserveElementCommand("aead_encrypt", statusOf(err), time.Since(start))
	return tag, err
}

func (e *instrumentedElement) AeadDecrypt(ctx context.Context, con device.Construction, slot device.Slot, buf []byte) (bool, error) {
	start := time.Now()
	authenticated, err := e.el.AeadDecrypt(ctx, con, slot, buf)

	status := statusOf(err)
	if err == nil && !authenticated {
		status = "auth_failed"
	}
	e.reg.ObserveElementCommand("aead_decrypt", status, time.Since(start))

	return authenticated, err
}

func (e *instrumentedElement) GenerateKey(ctx context.Context, slot device.Slot, bits int) error {
	start := time.Now()
	err := e.el.GenerateKey(ctx, slot, bits)
	e.reg.ObserveElementCommand("generate_key", statusOf(err), time.Since(start))
	return err
}

func (e *instrumentedElement) DestroyKey(ctx context.Context, slot device.Slot) error {
	start := time.Now()
	err := e.el.DestroyKey(ctx, slot)
	e.reg.ObserveElementCommand("destroy_key", statusOf(err), time.Since(start))
	return err
}

func (e *instrumentedElement) Slots() int {
	return e.el.Slots()
}

func (e *instrumentedElement) Serial() string {
	return e.el.Serial()
}

func (e *instrumentedElement) Close() error {
	return e.el.Close()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
