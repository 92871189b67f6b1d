// Command ble-scan is a manual test for peripheral discovery.
// It scans with the selected role's filter for a fixed time and prints
// each matching peripheral once, without connecting.
//
// Usage:
//
//	go run ./cmd/ble-scan [--role central|peripheral] [--duration 10s]
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/chaz8081/blesensor/internal/ble"
	"github.com/chaz8081/blesensor/internal/ble/protocol"
	"github.com/chaz8081/blesensor/internal/central"
)

func main() {
	role := flag.String("role", "central", "deployment role: central or peripheral")
	duration := flag.Duration("duration", 10*time.Second, "how long to scan")
	flag.Parse()

	profile, err := protocol.ProfileFor(protocol.Role(*role))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	var watch []string
	if profile.FilterServiceUUID != "" {
		watch = append(watch, profile.FilterServiceUUID)
	}
	adapter, err := ble.NewTinyGoAdapter(watch, 0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	filter := central.FilterFor(profile)
	fmt.Printf("Scanning for %s for %s...\n", *role, *duration)

	// Nothing is admitted, so the managed set stays empty and duplicates
	// are filtered here.
	seen := make(map[string]bool)
	found := 0
	scanner := central.NewScanner(adapter, &central.ManagedSet{}, func(id central.PeripheralIdentity) bool {
		if seen[id.Address] {
			return false
		}
		seen[id.Address] = true
		found++
		fmt.Printf("  %s  %q\n", id.Address, id.Name)
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	if err := scanner.Start(ctx, filter); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	<-ctx.Done()
	scanner.Stop()

	fmt.Printf("\nDone! %d device(s) found.\n", found)
}
