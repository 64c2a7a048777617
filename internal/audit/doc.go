// Package audit delivers authentication audit events to pluggable sinks.
//
//   - [Event] is the record: type, user, identity, client IP, outcome, metadata.
//   - [Sink] consumers: [ChannelSink], [JSONWriterSink], [ZapSink], [MultiSink],
//     and the Kafka producer in audit/kafka.
//   - [Dispatcher] relays events on its own goroutine so a slow sink never
//     delays a login. With DropIfFull it counts instead of blocking.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the service does that.
//   - Filter events based on business logic.
//   - Import the root package or any sibling internal package.
package audit
