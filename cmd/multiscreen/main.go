// Command multiscreen edits and inspects multi-screen workflow documents
// from the terminal: screens, scoped variables, host bindings, and render
// enforcement, backed by an in-memory host graph.
package main

func main() {
	Execute()
}
