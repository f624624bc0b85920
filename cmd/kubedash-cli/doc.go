// Command kubedash-cli is the terminal client of the Kubernetes
// multi-cluster dashboard.
//
// It runs single commands or an interactive shell against a dashboard
// backend, or against the built-in fixture backend with --mock:
//
//	kubedash-cli --mock login -u admin@example.com
//	kubedash-cli --mock -o json cluster list
//	kubedash-cli mock serve --addr :8000
package main
