// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package vgg implements the VGG16 convolutional network used to classify the persuasiveness
// of images, with a single logit as output.
//
// Scopes follow the naming of the Keras VGG16 layers, under the Scope scope. Convolutions
// hold "weights" and "biases" in a "conv" sub-scope, e.g. "/vgg16/block1_conv1/conv", and
// the dense layers ("fc1", "fc2", "head_fc" and "logit") in a "fnn_output_layer" sub-scope,
// e.g. "/vgg16/fc1/fnn_output_layer". A GoMLX checkpoint converted from the standard
// pretrained weights with these names can be loaded with LoadPretrained.
//
// Images are expected channels-first, shaped [batch_size, 3, size, size], with the means
// of each channel already subtracted.
package vgg

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/layers/fnn"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// Scope under which the model variables are created.
const Scope = "vgg16"

// FirstConvScope is the scope of the variables of the first convolution.
const FirstConvScope = "/" + Scope + "/block1_conv1/conv"

// Pooling selects the reduction of the pooling after each block.
type Pooling int

const (
	// MaxPooling is the VGG16 pooling.
	MaxPooling Pooling = iota

	// MeanPooling can be used on backends without the max-pooling gradient.
	MeanPooling
)

// VGG16Blocks lists the number of channels of each convolution, per block. Each block
// is followed by a 2x2 pooling.
var VGG16Blocks = [][]int{
	{64, 64},
	{128, 128},
	{256, 256, 256},
	{512, 512, 512},
	{512, 512, 512},
}

// Config of the network.
type Config struct {
	// Blocks of convolutions, see VGG16Blocks.
	Blocks [][]int

	// DefaultArchWeights selects the standard VGG16 top (fc1 and fc2, initialized from the
	// pretrained weights, all layers trainable). Otherwise, the convolutional base is frozen
	// and a small freshly initialized head is trained on top.
	DefaultArchWeights bool

	// TopUnits is the number of units of fc1 and fc2 for the standard top.
	TopUnits int

	// HeadUnits and HeadDropoutRate configure the custom head.
	HeadUnits       int
	HeadDropoutRate float64

	// Pooling after each block, MaxPooling by default.
	Pooling Pooling
}

// DefaultConfig returns the configuration of VGG16.
func DefaultConfig(defaultArchWeights bool) Config {
	return Config{
		Blocks:             VGG16Blocks,
		DefaultArchWeights: defaultArchWeights,
		TopUnits:           4096,
		HeadUnits:          256,
		HeadDropoutRate:    0.5,
	}
}

// ModelFn returns a train.ModelFn that builds the network for the given configuration.
func (cfg Config) ModelFn() train.ModelFn {
	return func(ctx *context.Context, spec any, inputs []*Node) []*Node {
		return []*Node{cfg.Logits(ctx, inputs[0])}
	}
}

// Logits builds the network over images and returns the logits, shaped [batch_size, 1].
func (cfg Config) Logits(ctx *context.Context, images *Node) *Node {
	ctx = ctx.In(Scope)
	if images.Rank() != 4 || images.Shape().Dimensions[1] != 3 {
		exceptions.Panicf("vgg: images must be shaped [batch_size, 3, height, width], got %s", images.Shape())
	}
	batchSize := images.Shape().Dimensions[0]
	x := cfg.convolutionalBase(ctx, images)
	x = Reshape(x, batchSize, -1)
	if cfg.DefaultArchWeights {
		x = dense(ctx.In("fc1"), x, cfg.TopUnits)
		x = activations.Relu(x)
		x = dense(ctx.In("fc2"), x, cfg.TopUnits)
		x = activations.Relu(x)
	} else {
		// Only the head is trained.
		x = StopGradient(x)
		x = dense(ctx.In("head_fc"), x, cfg.HeadUnits)
		x = activations.Relu(x)
		if cfg.HeadDropoutRate > 0 {
			x = layers.DropoutNormalize(ctx.In("head_dropout"), x, Scalar(x.Graph(), x.DType(), cfg.HeadDropoutRate), true)
		}
	}
	logits := dense(ctx.In("logit"), x, 1)
	logits.AssertDims(batchSize, 1)
	return logits
}

func (cfg Config) convolutionalBase(ctx *context.Context, x *Node) *Node {
	if len(cfg.Blocks) == 0 {
		exceptions.Panicf("vgg: no convolution blocks configured")
	}
	for blockIdx, channels := range cfg.Blocks {
		for convIdx, numChannels := range channels {
			convCtx := ctx.Inf("block%d_conv%d", blockIdx+1, convIdx+1)
			x = layers.Convolution(convCtx, x).
				ChannelsAxis(images.ChannelsFirst).
				Channels(numChannels).
				KernelSize(3).
				PadSame().
				Done()
			x = activations.Relu(x)
		}
		spatial := x.Shape().Dimensions[2]
		if spatial < 2 {
			exceptions.Panicf("vgg: images too small for %d blocks (spatial size %d before block%d_pool)",
				len(cfg.Blocks), spatial, blockIdx+1)
		}
		switch cfg.Pooling {
		case MeanPooling:
			x = MeanPool(x).ChannelsAxis(images.ChannelsFirst).Window(2).Done()
		default:
			x = MaxPool(x).ChannelsAxis(images.ChannelsFirst).Window(2).Done()
		}
	}
	return x
}

// dense is a linear layer without hidden layers, normalization or dropout, whatever the
// context hyperparameters.
func dense(ctx *context.Context, x *Node, units int) *Node {
	return fnn.New(ctx, x, units).
		NumHiddenLayers(0, 0).
		Normalization("").
		Dropout(0).
		Done()
}

// LoadPretrained attaches the pretrained weights in the GoMLX checkpoint directory dir to ctx.
// Variables are read lazily, as the model graph is built: variables missing in the checkpoint
// (e.g. the readout) are initialized normally, and mismatched shapes fail graph building.
//
// The checkpoint must hold the weights of the first convolution (FirstConvScope), otherwise
// it is not a VGG16 checkpoint and an error is returned. Checkpoint hyperparameters are not
// loaded.
//
// Since the lazily loaded variables are created by the model, ctx must not be checked for
// new variables: use context.New().Checked(false).
func LoadPretrained(ctx *context.Context, dir string) (*checkpoints.Handler, error) {
	handler, err := checkpoints.Load(ctx).Dir(dir).ExcludeAllParams().Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load pretrained VGG16 weights from %q", dir)
	}
	if _, found := handler.LoadedVariables()[context.VariableParameterNameFromScopeAndName(FirstConvScope, "weights")]; !found {
		return nil, errors.Errorf("pretrained weights in %q have no variable \"weights\" in scope %q, not a VGG16 checkpoint",
			dir, FirstConvScope)
	}
	return handler, nil
}
