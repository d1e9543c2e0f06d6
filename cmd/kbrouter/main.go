// Command kbrouter answers natural-language questions from a relational
// store, falling back to a document knowledge base.
package main

func main() {
	Execute()
}
