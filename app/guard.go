package app

type claim struct {
	take   bool
	key    string
	result chan<- bool
}

// SubmissionGuard lets one request at a time hold a key. Submissions hold
// "slug|ip" so two requests from one address cannot both pass the "already
// answered" check; editor events hold "edit|slug".
type SubmissionGuard struct {
	claims chan claim
}

func NewSubmissionGuard() *SubmissionGuard {
	g := &SubmissionGuard{claims: make(chan claim)}
	go func() {
		inFlight := make(map[string]bool)
		for c := range g.claims {
			if c.take {
				c.result <- !inFlight[c.key]
				inFlight[c.key] = true
			} else {
				delete(inFlight, c.key)
			}
		}
	}()
	return g
}

// Acquire reports whether key was free. A successful Acquire must be paired
// with Release.
func (g *SubmissionGuard) Acquire(key string) bool {
	result := make(chan bool)
	g.claims <- claim{true, key, result}
	return <-result
}

func (g *SubmissionGuard) Release(key string) {
	g.claims <- claim{false, key, nil}
}

// Close stops the guard; it cannot be used afterwards.
func (g *SubmissionGuard) Close() {
	close(g.claims)
}
