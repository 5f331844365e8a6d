package diagnosis

// MaxTurns is the number of turns, user and AI combined, that completes a session.
const MaxTurns = 10

// Progress maps a turn count to [0,1].
func Progress(turnCount int) float64 {
	if turnCount <= 0 {
		return 0
	}
	return min(float64(turnCount)/MaxTurns, 1.0)
}
