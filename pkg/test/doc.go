/*
Package test provides testing utilities for brokercore.

This package includes:
  - Suite: Base test suite with context and testify integration
  - Run: runs a Suite with testify

Usage:

	import "github.com/brokercore/brokercore/pkg/test"

	type MyTestSuite struct {
		test.Suite
	}

	func (s *MyTestSuite) TestSomething() {
		s.NoError(doSomething(s.Ctx))
	}

	func TestMySuite(t *testing.T) {
		test.Run(t, new(MyTestSuite))
	}
*/
package test
