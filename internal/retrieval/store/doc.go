// Package store 提供检索服务的向量存储层。
//
// 该包定义了向量存储的接口抽象和 Milvus 实现，
// 支持文档块的写入、带过滤条件的相似度搜索和统计。
package store
