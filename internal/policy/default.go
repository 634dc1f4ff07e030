package policy

// defaultDocument is the production policy for the project-tracking sheets.
func defaultDocument() Document {
	return Document{
		CanonicalColumns: []string{
			"序号", "项目类型", "来源", "任务发起时间", "目标对齐",
			"关键KR对齐", "具体计划内容", "邓总指导登记", "负责人",
			"协助人", "监督人", "重要程度", "预计完成时间", "完成进度",
			"形成计划清单", "复盘时间", "对上汇报", "应用情况", "进度分析总结",
		},
		Tiers: map[string][]string{
			"L1": {"来源", "任务发起时间", "目标对齐", "关键KR对齐", "重要程度", "预计完成时间", "完成进度"},
			"L2": {"项目类型", "具体计划内容", "邓总指导登记", "负责人", "协助人", "监督人", "形成计划清单"},
			"L3": {"序号", "复盘时间", "对上汇报", "应用情况", "进度分析总结"},
		},
		Synonyms: map[string][]string{
			"序号":     {"编号", "行号", "No", "id"},
			"项目类型":   {"项目分类", "类型", "项目", "分类", "project_type"},
			"来源":     {"数据来源", "来源部门", "源头", "起源", "source"},
			"任务发起时间": {"发起时间", "开始时间", "任务时间", "发起日期", "start_time"},
			"目标对齐":   {"对齐目标", "目标", "对齐情况", "目标匹配", "goal_alignment"},
			"关键KR对齐": {"KR对齐", "关键结果", "KR匹配", "关键指标对齐", "kr_alignment"},
			"具体计划内容": {"计划内容", "计划详情", "具体计划", "内容", "plan_content"},
			"邓总指导登记": {"指导登记", "领导指导登记", "guidance"},
			"负责人":    {"责任人", "主负责人", "项目负责人", "负责", "owner", "responsible"},
			"协助人":    {"协助", "协助者", "协助人员", "辅助人", "assistant"},
			"监督人":    {"监督", "监督者", "监督人员", "督导", "supervisor"},
			"重要程度":   {"重要性", "优先级", "重要等级", "程度", "priority", "importance"},
			"预计完成时间": {"完成时间", "计划完成", "预期完成", "截止时间", "deadline"},
			"完成进度":   {"进度", "完成度", "完成状态", "进展", "progress"},
			"形成计划清单": {"计划清单", "清单", "任务清单", "计划列表", "checklist"},
			"复盘时间":   {"复盘", "复盘日期", "回顾时间", "总结时间", "review_time"},
			"对上汇报":   {"汇报", "上报", "汇报情况", "汇报状态", "report"},
			"应用情况":   {"应用", "应用状态", "使用情况", "执行情况", "application"},
			"进度分析总结": {"分析总结", "总结", "进度总结", "分析报告", "summary"},
		},
		Weights: map[string]float64{
			"重要程度":   1.4,
			"任务发起时间": 1.3,
			"负责人":    1.2,
			"预计完成时间": 1.2,
			"邓总指导登记": 1.15,
			"完成进度":   1.1,
		},
		HighRiskKeywords: []string{
			"停产", "停止", "取消", "暂停", "终止", "延期", "推迟", "搁置",
			"废弃", "作废", "失败", "逾期", "下线", "冻结", "撤销",
			"cancelled", "canceled", "suspended", "terminated", "delayed",
			"blocked", "discontinued", "failed", "overdue",
		},
		DefaultTier: "L3",
	}
}

// Default returns the built-in production policy.
func Default() *Policy {
	p, err := New(defaultDocument())
	if err != nil {
		panic("policy: invalid built-in policy: " + err.Error())
	}
	return p
}
