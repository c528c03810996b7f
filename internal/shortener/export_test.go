package shortener

// Window exposes the digest windowing step for tests.
func (g *Generator) Window(digest string) Code {
	return g.window(digest)
}
