package reader

// Options carries plugin-specific open parameters as string key/value
// pairs, the same "loosely typed bag, strongly typed well-known keys"
// shape spec's external interfaces call for. Unknown keys are passed
// through to the plugin untouched.
type Options map[string]string

// Well-known option keys. Plugins that don't recognize a key ignore it.
const (
	// OptDefaultSpeed is the fallback frame rate (as a decimal string)
	// for sequence-style media that doesn't declare its own rate.
	OptDefaultSpeed = "SequenceIO/DefaultSpeed"
	// OptThreadCount hints the plugin's internal decode parallelism.
	OptThreadCount = "SequenceIO/ThreadCount"
)

func (o Options) Get(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	v, ok := o[key]
	return v, ok
}

// WithDefault merges o over base, returning a new map; o's keys win.
func (o Options) WithDefault(base Options) Options {
	merged := make(Options, len(base)+len(o))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range o {
		merged[k] = v
	}
	return merged
}
