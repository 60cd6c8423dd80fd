/*
	Adding to the Connector

	The Connector defines how resource handlers reach the documents of a
	collection. Handlers never talk to the database directly; every read and
	write goes through one of the Connector's methods, so that the same
	handler can be exercised against the DBConnector in production and the
	MockConnector in tests.

	Extending Connector should only be done when the desired functionality
	cannot be expressed as a filter, projection or update over a single
	collection.

	To add to the Connector, add the method signature into the interface in
	data/connector.go. Next, add the implementation that talks to MongoDB
	to DBConnector in data/impl.go, and finally a mock implementation to
	MockConnector in data/mock_impl.go. Filters understood by the mock are
	evaluated in data/mock_query.go; a new operator used by handlers needs
	an entry there too.
*/
package data
