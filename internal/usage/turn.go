package usage

// TurnContextUsage returns how much of the context window one model call
// occupied: fresh input plus cache reads. Cache creation is already part of
// this turn's fresh input and output is re-read as input on the next turn, so
// neither is counted. The second result is false only for a nil record.
func TurnContextUsage(r *Record) (int64, bool) {
	if r == nil {
		return 0, false
	}
	return r.Input() + r.CacheRead(), true
}

// TurnConversationDelta returns the conversational content a turn added:
// fresh input plus output.
func TurnConversationDelta(r *Record) (int64, bool) {
	if r == nil {
		return 0, false
	}
	return r.Input() + r.Output(), true
}
