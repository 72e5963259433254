// Package rentalsclient provides the primary entry point for constructing a
// vehicle rental marketplace client that implements the rentals.Client
// interface.
//
// It layers configuration, HTTP transport, session refresh and the query
// cache on top of the service interfaces and types defined in the rentals
// package. Most applications should import rentalsclient to build a client,
// then use the returned rentals.Client to reach Auth(), Vehicles() and
// Bookings().
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/rentals-client/pkg/rentals"
//	  "github.com/fivetwenty-io/rentals-client/pkg/rentalsclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // Public reads need only the gateway endpoint.
//	  cli, err := rentalsclient.NewWithEndpoint(ctx, "https://rentals.example.com")
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  page, err := cli.Vehicles().List(ctx, rentals.NewVehicleQuery().WithCity("Lisbon"))
//	  if err != nil { log.Fatal(err) }
//	  _ = page
//
//	  // Sign in; every later request carries the bearer token and a 401 is
//	  // answered by one shared refresh.
//	  _, err = cli.Auth().Login(ctx, &rentals.LoginRequest{Email: "me@example.com", Password: "..."})
//	  if err != nil { log.Fatal(err) }
//	}
//
// # Sessions
//
// NewWithCredentialFile keeps the session in a local SQLite file so a later
// process resumes it. Config.Persister accepts any rentals.CredentialPersister.
//
// # Errors
//
// Every failure is a *rentals.Error; switch on rentals.KindOf(err) or use the
// IsUnauthorized/IsForbidden/IsNotFound/IsValidation/IsNetwork helpers.
package rentalsclient
