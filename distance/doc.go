// Package distance provides the dissimilarity kernels used to rank vectors.
//
// # Supported Metrics
//
//   - MetricEuclidean: squared Euclidean distance for ranking, square-rooted for reporting (default)
//   - MetricCosine: cosine distance, 1 - cos(a, b)
//
// # Usage
//
//	d := distance.SquaredL2(a, b)
//	c := distance.CosineDistance(a, b)
//	m, err := distance.ParseMetric("cosine")
package distance
