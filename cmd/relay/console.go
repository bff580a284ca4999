package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dkriel/bidrelay/internal/relay"
)

// runConsole reads operator commands from stdin until QUIT or EOF.
func runConsole(coordinator *relay.Coordinator, shutdown context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "LIST":
			clients := coordinator.ConnectedClients()
			fmt.Println("Connected clients:")
			for _, line := range clients {
				fmt.Println("  " + line)
			}
			if len(clients) == 0 {
				fmt.Println("  (none)")
			}

		case "KILL":
			if len(fields) < 2 {
				fmt.Println("Usage: KILL <username>")
				continue
			}
			if coordinator.KillClient(fields[1]) {
				fmt.Printf("Killed connection for user: %s\n", fields[1])
			} else {
				fmt.Printf("No connection found for user: %s\n", fields[1])
			}

		case "AUCTIONS":
			fmt.Println("Current auctions:")
			for _, line := range coordinator.AuctionTable() {
				fmt.Println("  " + line)
			}

		case "QUIT":
			shutdown()
			return

		default:
			fmt.Println("Unknown command. Available: LIST, KILL <username>, AUCTIONS, QUIT")
		}
	}
}
