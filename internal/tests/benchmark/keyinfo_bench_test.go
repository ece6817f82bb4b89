package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/storage/memory"
)

// benchKeyInfo builds a storable key record for slot i mod the element size.
func benchKeyInfo(app string, i int) *domain.KeyInfo {
	return domain.NewKeyInfo(
		domain.NewKeyTriple(app, fmt.Sprintf("key-%d", i)),
		uint8(i%16),
		domain.KeyAttributes{
			Type:      domain.KeyTypeAES,
			Bits:      256,
			Usage:     domain.UsageFlags{Encrypt: true, Decrypt: true},
			Algorithm: domain.FamilyAeadGCM,
		})
}

// prefillKeyInfos loads count records across a handful of applications.
func prefillKeyInfos(ctx context.Context, b *testing.B, store *memory.KeyInfoStore, count int) []*domain.KeyInfo {
	infos := make([]*domain.KeyInfo, count)
	for i := 0; i < count; i++ {
		infos[i] = benchKeyInfo(fmt.Sprintf("sva-app-%d", i%100), i)
		if err := store.PutKeyInfo(ctx, infos[i]); err != nil {
			b.Fatalf("PutKeyInfo failed: %v", err)
		}
	}
	return infos
}

// BenchmarkKeyInfoPut benchmarks metadata writes at various store sizes.
func BenchmarkKeyInfoPut(b *testing.B) {
	for _, count := range KeyInfoCounts {
		b.Run(fmt.Sprintf("preload_%d", count), func(b *testing.B) {
			ctx := context.Background()
			store := memory.NewKeyInfoStore()
			prefillKeyInfos(ctx, b, store, count)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				info := benchKeyInfo("sva-bench-writer", count+i)
				if err := store.PutKeyInfo(ctx, info); err != nil {
					b.Fatalf("PutKeyInfo failed: %v", err)
				}
			}

			b.StopTimer()
			reportMemory(b, "mem")
		})
	}
}

// BenchmarkKeyInfoGet benchmarks metadata lookups at various store sizes.
func BenchmarkKeyInfoGet(b *testing.B) {
	for _, count := range KeyInfoCounts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			ctx := context.Background()
			store := memory.NewKeyInfoStore()
			infos := prefillKeyInfos(ctx, b, store, count)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				triple := infos[i%len(infos)].Triple
				if _, err := store.GetKeyInfo(ctx, triple); err != nil {
					b.Fatalf("GetKeyInfo failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkKeyInfoList benchmarks per-application listing, the shape the
// key listing endpoint produces.
func BenchmarkKeyInfoList(b *testing.B) {
	for _, count := range KeyInfoCounts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			ctx := context.Background()
			store := memory.NewKeyInfoStore()
			prefillKeyInfos(ctx, b, store, count)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				app := fmt.Sprintf("sva-app-%d", i%100)
				if _, err := store.ListKeyInfos(ctx, app); err != nil {
					b.Fatalf("ListKeyInfos failed: %v", err)
				}
			}
		})
	}
}
