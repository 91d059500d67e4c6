// Package mongodb provides the MongoDB backend of the connection layer.
//
// MongoDB has no SQL text. Callers put one of the Operation types into
// dbconn.Query.Operation:
//
//	res, err := client.ExecuteQuery(ctx, dbconn.Query{
//		Operation: mongodb.Find{Collection: "orders", Filter: bson.M{"status": "open"}, Limit: 100},
//	})
//
// Find and Aggregate return documents as Records, with columns ordered by
// first appearance across the result. Insert, Update and Delete report the
// affected document count. Any other value in Operation is rejected with a
// validation error.
//
// ExecuteBatchQuery treats its statement argument as a collection name and
// every row of values as a single document. ExecuteTransaction reads each
// statement's Operation from Params[0].
//
// Failed writes are not captured in the failed-query log: the log stores SQL
// text and positional parameters, which cannot express an Operation.
package mongodb
