package assemble

import "math/rand/v2"

// sample returns n distinct elements of pool chosen uniformly without
// replacement. pool itself is left untouched.
func sample[T any](r *rand.Rand, pool []T, n int) []T {
	buf := append([]T(nil), pool...)
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(buf)-i)
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf[:n]
}

// permutation returns a uniform random permutation of 0..n-1 (Fisher–Yates).
func permutation(r *rand.Rand, n int) []int {
	p := identity(n)
	for i := n - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}

func identity(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// applyOrder lays out alts so that position k shows alts[order[k]], and
// returns the position the original correct alternative landed on. The
// lookup follows the index, so duplicate alternative texts cannot confuse it.
func applyOrder(alts []string, correct int, order []int) ([]string, int) {
	out := make([]string, len(order))
	remapped := -1
	for k, orig := range order {
		out[k] = alts[orig]
		if orig == correct {
			remapped = k
		}
	}
	return out, remapped
}
