// Package biz 实现检索流水线的业务逻辑。
//
// 流水线按固定顺序串联各阶段：
//
//	原始查询 → Processor（清洗/分类/扩展）→ Retriever（向量检索）
//	→ Ranker（多信号重排序）→ 阈值过滤 → 响应组装
//
// Orchestrator 负责编排整个流程，Validator 对生成的答案做事实校验。
// 所有阶段除统计计数器外均无共享可变状态。
package biz
