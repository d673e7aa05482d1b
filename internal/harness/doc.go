// Package harness runs scripted pond scenarios against the simulation.
//
// A scenario seeds a pond, drives it through a list of steps and then checks
// assertions against what happened. Every run produces a trace of feed,
// spawn, eaten and expired events keyed by tick number, which tests compare
// against golden files.
//
// # Scenario Format
//
//	name: eat_toward_pellet
//	description: "A fish swims to a nearby pellet and eats it"
//	config:            # optional overlay on the default parameters
//	  food: { ttl: 2 }
//	pond:
//	  fish:
//	    - { id: 1, x: 100, y: 100, vx: 60, vy: 0, speed: 60 }
//	  food:
//	    - { id: 2, x: 150, y: 100, kind: common }
//	steps:
//	  - feed: { x: 400, y: 300, kind: rare }
//	  - add_fish: { x: 800, y: 600 }
//	  - ticks: 20
//	    dt: 0.05
//	assertions:
//	  - type: eaten
//	    food: 2
//	    tick: 10
//	  - type: fish
//	    fish: 1
//	    field: sizeScale
//	    min: 1.0039
//	    max: 1.0041
//
// # Assertion Types
//
//   - eaten, expired: the pellet reached that terminal state (at tick, if given)
//   - food_state: the pellet is still present in the given state
//   - fish_count, food_count: collection sizes after the last step
//   - fish: a numeric field of one fish lies in [min, max]
//   - contained: every fish sits inside its size-scaled wall margin
package harness
