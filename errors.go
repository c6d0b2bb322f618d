package metaspace

import "errors"
import "fmt"

// ErrorOutofMemory allocation failed even after a collection and the
// small-chunk fallback.
var ErrorOutofMemory = errors.New("metaspace.outofmemory")

// ErrorReleased operation attempted on a released loader or instance.
var ErrorReleased = errors.New("metaspace.released")

// ErrorClassSpaceDisabled class-kind operation while the
// compressed-pointer space is disabled.
var ErrorClassSpaceDisabled = errors.New("metaspace.classspacedisabled")

// OutofMemory error returned by Loader.Alloc once the retry ladder is
// exhausted. Carries the request that could not be satisfied.
type OutofMemory struct {
	Loader string
	Kind   Kind
	Words  int64
}

func (oom *OutofMemory) Error() string {
	fmsg := "metaspace.outofmemory: %v words of %v metadata for %q"
	return fmt.Sprintf(fmsg, oom.Words, oom.Kind, oom.Loader)
}

// Unwrap to let callers match ErrorOutofMemory with errors.Is().
func (oom *OutofMemory) Unwrap() error {
	return ErrorOutofMemory
}
