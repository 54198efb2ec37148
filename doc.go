// Package vecfile provides a single-file, append-only vector store with
// exact k-nearest-neighbor search.
//
// A store is one file: a 4-byte big-endian dimension header followed by
// records of [vector float32 x D, native byte order][metadata length u32,
// big-endian][metadata bytes]. There is no index; every search is a full
// sequential scan that keeps only the k best candidates in memory and
// decodes metadata for the survivors alone.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, _ := vecfile.New("vectors.dat", 3)
//	_ = store.AddVector(ctx, []float32{1, 0, 0}, vecfile.Metadata{"id": 1})
//	results, _ := store.Search(ctx, []float32{1, 0, 0}, 5, distance.MetricCosine)
//
// # Metrics
//
// Euclidean searches rank by squared distance and report the square root.
// Cosine searches report 1 - cos(q, v); a zero-norm operand yields 1.
//
// # Errors
//
// Argument errors wrap ErrInvalidArgument and are detected before any I/O.
// Impossible on-disk values wrap ErrCorruption. A record cut short at the
// end of the file, as left by an interrupted append, is not an error; it is
// skipped by searches.
//
// # Concurrency
//
// Searches may run concurrently with each other. Appends must be serialized
// by the caller and must not overlap searches.
package vecfile
