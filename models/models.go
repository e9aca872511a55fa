package models

// This file serves as the central export point for all domain models
// Import this package to access all model types

// All models are exported from their respective files:
// - ScenarioSelection, ScenarioOption, ScenarioOptions from scenario.go
// - Product, ProductImage from product.go
// - Message, Conversation from conversation.go
// - EvaluationResult, AspectFeedback, TrainingSession, UserStats from training.go
// - *Record types (SQL rows for the postgres backend) from records.go

// Key-value layout (redis backend):
// 1. user:{userId}:stats - UserStats JSON
// 2. training:{userId}:sessions - sorted set of session ids scored by start time
// 3. training:{userId}:{sessionId} - TrainingSession JSON
// 4. scenarios:{difficulties|emotions|products} - ScenarioOption list JSON
// 5. products - hash of product id to Product JSON

