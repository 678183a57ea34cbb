/*
Package client is the ergonomic SDK external Go programs and kvctl use to
talk to a kv-provider. It wraps pkg/transport.Client, the lower-level,
context-threaded RPC wrapper migration also uses as its RemoteProvider,
hiding the context plumbing behind a DefaultTimeout applied per call.

	c, err := client.NewClient("127.0.0.1:7070")
	if err != nil { ... }
	defer c.Close()

	info, err := c.Attach(types.AttachConfig{Name: "orders", Backend: types.BackendMap})
*/
package client
