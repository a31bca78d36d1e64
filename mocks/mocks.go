// Package mocks contains the gomock mocks of the goengine-core interfaces
package mocks

//go:generate mockgen -package mocks -destination eventing.go -mock_names Dispatcher=Dispatcher,CheckpointObserver=CheckpointObserver github.com/hellofresh/goengine-core/eventing Dispatcher,CheckpointObserver
//go:generate mockgen -package mocks -destination checkpoint.go -mock_names Store=CheckpointStore github.com/hellofresh/goengine-core/checkpoint Store
