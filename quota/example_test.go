/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

func Example() {
	clock := clockwork.NewFakeClock()

	// Allow at most 10 units of weight per 5 seconds.
	tracker, err := NewWithOpts(10, 5*time.Second, Options{Clock: clock})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(tracker.CheckAdd(6))
	fmt.Println(tracker.CheckAdd(6))
	fmt.Println(tracker.CheckAdd(4))

	decision := tracker.Check(1)
	fmt.Println(decision.Admitted, decision.RetryAfter)

	clock.Advance(6 * time.Second)
	fmt.Println(tracker.CheckAdd(10))

	// Output:
	// true
	// false
	// true
	// false 6s
	// true
}
