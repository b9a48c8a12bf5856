package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates the typed observers into one callbacks.Handler.
func NewAllCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
}

// NewGraphCallbacks is what a turn is invoked with: component observers
// plus node timing.
func NewGraphCallbacks() []einocb.Handler {
	return []einocb.Handler{NewAllCallbacks(), NewNodeCallbacks()}
}
