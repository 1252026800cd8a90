package scraper

// maxRedirectChainLen bounds how many hops a single entry-point fetch may
// follow before it is treated as exceeding the MaxRedirects_InputURL
// condition.
const maxRedirectChainLen = 10

// redirectChainExceeds walks a recorded from->to redirect chain with a
// visited set, detecting either a genuine cycle or a chain longer than
// maxRedirectChainLen starting at root, and reports whether root's
// redirect chain should be treated as exhausted.
func redirectChainExceeds(root string, chain map[string]string, limit int) bool {
	if limit <= 0 {
		limit = maxRedirectChainLen
	}

	visited := map[string]bool{root: true}
	current := root
	steps := 0

	for {
		next, ok := chain[current]
		if !ok || next == "" {
			return false
		}
		if visited[next] {
			return true // cycle
		}
		visited[next] = true
		current = next
		steps++
		if steps > limit {
			return true
		}
	}
}
