// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - LLMService / LLMClient: Language model and the invocation layer around it
//   - EmbeddingService / Reranker / EmbeddingClient: Vectors and cross-encoder scores
//   - StorageQuery / AccessToucher: Server-side scoring and access bumps
//   - DocumentStore / NodeStore / MemoryStore / CallLogStore: Persistence
//   - ConfigStore / PromptStore: Configuration
//   - Normaliser / NormaliserRegistry: File formats to document text
//   - PostProcessor / PostProcessorPipeline: Leaf generation
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
