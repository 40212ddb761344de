// meta/meta.go
package meta

import "time"

// Infinity defines the root alpha-beta window (-Infinity, Infinity).
const Infinity = 9999

// FANOUT defines the n-ary of the worker tree.
const FANOUT = 3

// MASTER_ID defines the rank of the process that issues the root job.
const MASTER_ID = 0

// AGGREGATION_TIMEOUT defines how long a coordinator waits for outstanding children.
const AGGREGATION_TIMEOUT = 3 * time.Second

// IDLE_POLL defines the blocking receive interval of an idle worker.
const IDLE_POLL = 50 * time.Millisecond

// MAX_TURNS defines the cap on plies in a self-play game.
const MAX_TURNS = 300
