package benchmark

import (
	"context"
	"crypto/rand"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/core/service"
	"github.com/yndnr/sevault-go/internal/device"
	"github.com/yndnr/sevault-go/internal/storage/memory"
)

// PayloadSizes defines the plaintext sizes for the AEAD benchmarks.
var PayloadSizes = []int{64, 512, 4096, 65536}

// KeyInfoCounts defines the metadata store scales for the key benchmarks.
var KeyInfoCounts = []int{1000, 5000, 10000}

const benchApp = "sva-benchmark"

// newRequestID generates a request ID shaped like the middleware's.
func newRequestID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, _ := ulid.New(ulid.Timestamp(time.Now()), entropy)
	return "req-" + id.String()
}

// randomBytes returns n bytes of fresh randomness.
func randomBytes(b *testing.B, n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		b.Fatalf("rand: %v", err)
	}
	return buf
}

// benchVault is an in-process vault: a soft element with services over
// an in-memory metadata store.
type benchVault struct {
	Element *device.SoftElement
	Keys    *service.KeyService
	Aead    *service.AeadService
}

// newBenchVault builds a vault and provisions one AES-256 key per name,
// all bound to the given algorithm family.
func newBenchVault(b *testing.B, family domain.Family, keyNames ...string) *benchVault {
	b.Helper()

	element, err := device.NewSoftElement()
	if err != nil {
		b.Fatalf("soft element: %v", err)
	}

	store := memory.NewKeyInfoStore()
	keySvc := service.NewKeyService(store, element)
	ctx := context.Background()

	for _, name := range keyNames {
		_, err := keySvc.CreateKey(ctx, &service.CreateKeyRequest{
			App:  benchApp,
			Name: name,
			Attributes: domain.KeyAttributes{
				Type:      domain.KeyTypeAES,
				Bits:      256,
				Usage:     domain.UsageFlags{Encrypt: true, Decrypt: true},
				Algorithm: family,
			},
		})
		if err != nil {
			b.Fatalf("create key %s: %v", name, err)
		}
	}

	return &benchVault{
		Element: element,
		Keys:    keySvc,
		Aead:    service.NewAeadService(store, element, nil),
	}
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithPayloadSizes runs a benchmark function for each payload size.
func runWithPayloadSizes(b *testing.B, sizes []int, benchFn func(b *testing.B, size int)) {
	for _, size := range sizes {
		b.Run(fmt.Sprintf("payload_%d", size), func(b *testing.B) {
			benchFn(b, size)
		})
	}
}
