// Package symreg implements genetic-programming-based symbolic regression:
// it evolves populations of mathematical expression trees to fit tabular
// data, jointly optimizing prediction error and structural complexity, and
// reports a Pareto-optimal set of equations ranked by complexity.
//
// Key Components:
//
//   - Core: the shared data model — the immutable Dataset, the validated
//     Options, population members and loss functions.
//
//   - Expr: the expression-tree library — typed syntax trees, vectorized
//     evaluation with gradients, structural metrics, random generation and
//     algebraic simplification.
//
//   - Search: the evolutionary engine — regularized evolution with
//     tournament selection, a weighted mutation operator set, adaptive
//     parsimony, inter-population migration and a Hall of Fame archiving
//     the best member per complexity.
//
//   - Optimize: the numeric constant optimizer, tuning the constant leaves
//     of candidate trees against the data.
//
//   - Datasets: CSV ingestion and synthetic benchmark generators.
//
// A search is configured with core.Options, bound to a core.Dataset and run
// through search.NewDriver:
//
//	opts := core.DefaultOptions()
//	driver, err := search.NewDriver(ds, opts)
//	if err != nil {
//		return err
//	}
//	result, err := driver.Run(ctx)
//	if err != nil {
//		return err
//	}
//	report := result.Report(0)
//
// Populations evolve concurrently, one worker per population batch, and
// every evaluated member is merged into the shared Hall of Fame. A
// deterministic single-threaded mode with fixed seeding is available for
// reproducibility.
package symreg
