package tilecache

// admit counts one write attempt against the store and reports whether a size limit
// pass is due. A pass is due every checkThreshold admissions, so at most checkThreshold
// entries are added on top of the limit between two passes.
func (c *TileCache) admit() bool {
	for {
		count := c.admissions.Load()
		next := count + 1
		due := next >= c.checkThreshold
		if due {
			next = 0
		}
		if c.admissions.CompareAndSwap(count, next) {
			return due
		}
	}
}
