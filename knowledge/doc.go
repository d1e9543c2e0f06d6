// Package knowledge ingests documents into a vector index and answers
// questions from it.
//
// Ingestion runs as a graph of four steps:
//
//	load -> split -> embed -> store
//
// Loaders turn PDF, text, markdown and HTML uploads into langchaingo
// documents; the splitter cuts them into overlapping chunks (500 runes,
// 100 overlap by default); an Embedder vectorizes the chunks and a Store
// keeps them. BadgerStore persists chunks on disk, MemoryStore keeps them in
// process.
//
// QAEngine retrieves the k most similar chunks (2 by default), stuffs them
// into a single prompt and asks a Generator for the answer.
package knowledge
