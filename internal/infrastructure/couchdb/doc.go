// Package couchdb provides CouchDB connectivity for the state store.
//
// It contains two pieces:
//
//   - Connection: the long-lived connection handle. It owns the connection
//     parameters, lazily creates the store client on first use, makes sure
//     the target database exists (creating it if needed) and memoizes the
//     client for the rest of its lifetime.
//   - Client: a docstore.Store implementation speaking the CouchDB HTTP API
//     through go-resty.
//
// # Usage
//
//	conn := couchdb.NewConnection(couchdb.Params{
//	    Database: "state_storage",
//	    Host:     "127.0.0.1",
//	    Port:     5984,
//	}, couchdb.WithLogger(log))
//	defer conn.Close()
//
//	store, err := conn.Client(ctx)
//	if err != nil {
//	    return err // errors.Is(err, couchdb.ErrConnectionFailed)
//	}
//
// # Connection URI
//
// The URI is derived lazily from the parameters:
//
//	http://127.0.0.1:5984          no credentials
//	http://a:b@127.0.0.1:5984      username "a", password "b"
//	http://a:@127.0.0.1:5984       username only
//	http://:b@127.0.0.1:5984       password only
//
// # Thread Safety
//
// Connection.Client is safe for concurrent use; lazy initialisation is
// guarded so the database check runs once even under concurrent callers.
// A failed initialisation is not cached and the next call retries.
package couchdb
