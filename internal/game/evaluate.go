package game

// Evaluate scores guess against target. Both must be Cols bytes long and
// share a letter case; any other input yields all-absent.
//
// Pass 1 marks exact matches as correct and consumes that target slot.
// Pass 2 walks the remaining guess letters and, for each, consumes the first
// unconsumed target slot holding the same letter (present) or leaves it
// absent. Repeated guess letters beyond the target's count end up absent.
func Evaluate(guess, target string) [Cols]CellState {
	var res [Cols]CellState
	for i := range res {
		res[i] = StateAbsent
	}
	if len(guess) != Cols || len(target) != Cols {
		return res
	}

	var used [Cols]bool
	for i := 0; i < Cols; i++ {
		if guess[i] == target[i] {
			res[i] = StateCorrect
			used[i] = true
		}
	}

	for i := 0; i < Cols; i++ {
		if res[i] == StateCorrect {
			continue
		}
		for j := 0; j < Cols; j++ {
			if !used[j] && target[j] == guess[i] {
				used[j] = true
				res[i] = StatePresent
				break
			}
		}
	}
	return res
}

// allCorrect returns true if every state is StateCorrect.
func allCorrect(s [Cols]CellState) bool {
	for _, x := range s {
		if x != StateCorrect {
			return false
		}
	}
	return true
}
