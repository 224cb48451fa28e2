// Package fixture provides data fixtures and the machinery that loads them
// into an orm.Manager.
//
// A Fixture writes rows through a manager. Fixtures are identified by string
// ids and built through a Registry. A Loader collects fixtures in order,
// pulling in declared dependencies and handing the container to fixtures
// that ask for it. An Executor purges the store (unless appending) and runs
// the fixtures with a shared References set.
//
// Purge and execute behaviour differs between store families; StrategyFor
// selects the implementation for a manager's Family.
package fixture
