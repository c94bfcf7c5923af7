package textutil

// EditDistance returns the Levenshtein distance between a and b.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// IsNearMatch reports whether two tokens are within a length-proportional
// fuzziness budget: length gap at most 1, distance at most
// max(1, floor(min(len)/5)). Short tokens are therefore stricter than long
// ones.
func IsNearMatch(a, b string) bool {
	la, lb := len([]rune(a)), len([]rune(b))
	gap := la - lb
	if gap < 0 {
		gap = -gap
	}
	if gap > 1 {
		return false
	}
	shorter := la
	if lb < shorter {
		shorter = lb
	}
	budget := shorter / 5
	if budget < 1 {
		budget = 1
	}
	return EditDistance(a, b) <= budget
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
