// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// avimg trains VGG16 to tell persuasive images apart, sweeping the learning rate, and reports
// the test accuracy of the best one retrained on train and validation combined.
//
// Example:
//
//	avimg --imdir=~/data/images --vgg-weights=~/data/vgg16 --save-path=~/runs \
//		--train=true --default-arch-weights=false --augment=true --lrs 0.001 0.0001 --epochs=5
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	klog.Flush()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			if klog.V(1).Enabled() {
				fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
		os.Exit(1)
	}
}
