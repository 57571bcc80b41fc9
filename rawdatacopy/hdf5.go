//go:build hdf5

package main

import _ "github.com/next-exp/rawdata_go/pkg/container/h5store"
