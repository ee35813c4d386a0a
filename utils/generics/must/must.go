package must

// Must returns v or panics with err. For values that are fixed at build time.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
